package main

import "github.com/GNOME/gnome-remote-desktop-sub000/internal/input"

// pcScancodeToEvdev maps PC/AT set-1 scancodes to Linux evdev keycodes,
// the platform-neutral keycode space SubmitKeyByKeycode expects. For the
// unextended block the two numbering schemes coincide by construction;
// the extended (0xE0-prefixed) keys below are the ones that don't.
var pcScancodeToEvdev = map[input.ScancodeKey]uint32{
	{Code: 0x01}: 1,  // Esc
	{Code: 0x0E}: 14, // Backspace
	{Code: 0x0F}: 15, // Tab
	{Code: 0x1C}: 28, // Enter
	{Code: 0x1D}: 29, // LeftCtrl
	{Code: 0x2A}: 42, // LeftShift
	{Code: 0x36}: 54, // RightShift
	{Code: 0x38}: 56, // LeftAlt
	{Code: 0x39}: 57, // Space
	{Code: 0x3A}: 58, // CapsLock

	{Code: 0x02}: 2, {Code: 0x03}: 3, {Code: 0x04}: 4, {Code: 0x05}: 5,
	{Code: 0x06}: 6, {Code: 0x07}: 7, {Code: 0x08}: 8, {Code: 0x09}: 9,
	{Code: 0x0A}: 10, {Code: 0x0B}: 11, // 1-9, 0

	{Code: 0x10}: 16, {Code: 0x11}: 17, {Code: 0x12}: 18, {Code: 0x13}: 19,
	{Code: 0x14}: 20, {Code: 0x15}: 21, {Code: 0x16}: 22, {Code: 0x17}: 23,
	{Code: 0x18}: 24, {Code: 0x19}: 25, // Q-P
	{Code: 0x1E}: 30, {Code: 0x1F}: 31, {Code: 0x20}: 32, {Code: 0x21}: 33,
	{Code: 0x22}: 34, {Code: 0x23}: 35, {Code: 0x24}: 36, {Code: 0x25}: 37,
	{Code: 0x26}: 38, // A-L
	{Code: 0x2C}: 44, {Code: 0x2D}: 45, {Code: 0x2E}: 46, {Code: 0x2F}: 47,
	{Code: 0x30}: 48, {Code: 0x31}: 49, {Code: 0x32}: 50, // Z-M

	{Code: 0x3B}: 59, {Code: 0x3C}: 60, {Code: 0x3D}: 61, {Code: 0x3E}: 62,
	{Code: 0x3F}: 63, {Code: 0x40}: 64, {Code: 0x41}: 65, {Code: 0x42}: 66,
	{Code: 0x43}: 67, {Code: 0x44}: 68, {Code: 0x57}: 87, {Code: 0x58}: 88, // F1-F12

	// Extended keys (0xE0 prefix on the wire; ScancodeKey.Extended=true).
	{Code: 0x1C, Extended: true}: 96,  // KP Enter
	{Code: 0x1D, Extended: true}: 97,  // RightCtrl
	{Code: 0x38, Extended: true}: 100, // RightAlt
	{Code: 0x47, Extended: true}: 102, // Home
	{Code: 0x48, Extended: true}: 103, // Up
	{Code: 0x49, Extended: true}: 104, // PageUp
	{Code: 0x4B, Extended: true}: 105, // Left
	{Code: 0x4D, Extended: true}: 106, // Right
	{Code: 0x4F, Extended: true}: 107, // End
	{Code: 0x50, Extended: true}: 108, // Down
	{Code: 0x51, Extended: true}: 109, // PageDown
	{Code: 0x52, Extended: true}: 110, // Insert
	{Code: 0x53, Extended: true}: 111, // Delete
	{Code: 0x5B, Extended: true}: 125, // LeftMeta
	{Code: 0x5C, Extended: true}: 126, // RightMeta
	{Code: 0x5D, Extended: true}: 127, // Menu
}
