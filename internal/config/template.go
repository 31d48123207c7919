package config

import "fmt"

// Built-in defaults shared by the config template and the CLI flags.
const (
	DefaultDatasetURL     = "https://raw.githubusercontent.com/ageron/data/main/heart.csv"
	DefaultTimeoutSeconds = 15
	DefaultAdvisorModel   = "gpt-4o-mini"
	DefaultAdvisorBaseURL = "https://api.openai.com/v1"
	DefaultAPIKeyEnv      = "OPENAI_API_KEY"
	DefaultLogLevel       = "info"
)

// Template returns the commented config written by `heartaudit config`.
func Template(threshold, gapAlert float64) string {
	return fmt.Sprintf(`# heartaudit configuration
# Uncomment a value to enable it. CLI flags override config values.

[dataset]
# url = %q
# timeout-seconds = %d    # Fetch timeout
# cache = true            # Keep fetched snapshots for offline use

[audit]
# threshold = %.2f        # Decision threshold (0-1)
# gap-alert = %.2f        # Recall gap that triggers a disparity notice

[model]
# intercept = -3.5
# [model.weights]
# sex = 1.2
# thalach = -0.02

[advisor]
# model = %q
# base-url = %q
# api-key-env = %q

[log]
# level = %q             # debug, info, warn, error
`,
		DefaultDatasetURL,
		DefaultTimeoutSeconds,
		threshold,
		gapAlert,
		DefaultAdvisorModel,
		DefaultAdvisorBaseURL,
		DefaultAPIKeyEnv,
		DefaultLogLevel,
	)
}
