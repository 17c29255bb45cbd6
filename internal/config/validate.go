package config

import (
	"fmt"
	"strings"
	"unicode"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates violations that must block startup from ones
// that are auto-corrected and merely logged.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors concatenates fatals and warnings for callers that just want to
// know whether validation produced anything to report.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config for invalid values. Settings that would
// make the daemon fail outright (bad screen-share mode, a cert without a
// key, control characters in the credential password) are fatal. Settings
// that just need to be in a safe range (timeouts, cache sizes, worker pool)
// are clamped and reported as warnings.
func (c *Config) ValidateTiered() ValidationResult {
	var result ValidationResult

	switch c.RDPScreenShareMode {
	case ScreenShareModeMirrorPrimary, ScreenShareModeExtend, "":
	default:
		result.Fatals = append(result.Fatals, fmt.Errorf("rdp_screen_share_mode %q is not valid (use mirror-primary or extend)", c.RDPScreenShareMode))
	}

	if (c.RDPServerCert == "") != (c.RDPServerKey == "") {
		result.Fatals = append(result.Fatals, fmt.Errorf("rdp_server_cert and rdp_server_key must both be set or both be empty"))
	}

	if c.RDPCredentialPassword != "" {
		for _, r := range c.RDPCredentialPassword {
			if unicode.IsControl(r) {
				result.Fatals = append(result.Fatals, fmt.Errorf("rdp_credential_password contains control characters"))
				break
			}
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.Fatals = append(result.Fatals, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.Fatals = append(result.Fatals, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	clampInt(&result, &c.LayoutRecreationTimeoutMS, "layout_recreation_timeout_ms", 1, 5000, 50)
	clampInt(&result, &c.FormatListTimeoutSeconds, "format_list_timeout_seconds", 1, 120, 4)
	clampInt(&result, &c.FormatDataRequestTimeoutSecs, "format_data_request_timeout_seconds", 1, 120, 4)
	clampInt(&result, &c.ClipDataDropTimeoutSeconds, "clip_data_drop_timeout_seconds", 1, 600, 60)
	clampInt(&result, &c.AudioTrainingTimeoutSeconds, "audio_training_timeout_seconds", 1, 120, 10)
	clampInt(&result, &c.AudioInputOpenReplyTimeoutS, "audio_input_open_reply_timeout_seconds", 1, 120, 10)

	clampInt(&result, &c.MaxMonitorCount, "max_monitor_count", 1, 64, 16)
	clampInt(&result, &c.PointerCacheSize, "pointer_cache_size", 1, 256, 32)
	clampInt(&result, &c.WorkerPoolSize, "worker_pool_size", 1, 256, 4)
	clampInt(&result, &c.WorkerPoolQueueCap, "worker_pool_queue_capacity", 1, 10000, 256)

	return result
}

func clampInt(result *ValidationResult, field *int, name string, min, max, fallback int) {
	if *field < min {
		result.Warnings = append(result.Warnings, fmt.Errorf("%s %d is below minimum %d, clamping", name, *field, min))
		if *field <= 0 && fallback >= min {
			*field = fallback
		} else {
			*field = min
		}
		return
	}
	if *field > max {
		result.Warnings = append(result.Warnings, fmt.Errorf("%s %d exceeds maximum %d, clamping", name, *field, max))
		*field = max
	}
}
