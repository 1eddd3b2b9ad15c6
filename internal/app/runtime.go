package app

import "os"

// TestModeEnv marks a process started by the test harness.
const TestModeEnv = "LEARNHUB_TEST_MODE"

// InTestMode reports whether binaries should skip connecting to real services.
func InTestMode() bool {
	return os.Getenv(TestModeEnv) == "1"
}
