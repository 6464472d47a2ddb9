package providers

import "time"

// local mocks to avoid import cycle with testutil

type testLogger struct {
	debug []TypeEnum
	info  int
}

func (m *testLogger) Errorf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *testLogger) Warnf(_ TypeEnum, _ string, _ ...interface{})  {}
func (m *testLogger) Debugf(t TypeEnum, _ string, _ ...interface{}) { m.debug = append(m.debug, t) }
func (m *testLogger) Infof(_ TypeEnum, _ string, _ ...interface{})  { m.info++ }
func (m *testLogger) Fatalf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *testLogger) Close()                                        {}

type mockMetrics struct {
	requestEndpoint string
	requestStatus   int
	requestCalls    int
	durationCalls   int
	hits            int
	misses          int
}

func (m *mockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.requestEndpoint = endpoint
	m.requestStatus = status
	m.requestCalls++
}
func (m *mockMetrics) ObserveRequestDuration(_ string, _ time.Duration) { m.durationCalls++ }
func (m *mockMetrics) IncCacheHits()                                    { m.hits++ }
func (m *mockMetrics) IncCacheMisses()                                  { m.misses++ }
func (m *mockMetrics) IncExports(_ string)                              {}
func (m *mockMetrics) IncImports(_ string)                              {}
func (m *mockMetrics) ObserveCodecDuration(_ string, _ time.Duration)   {}
func (m *mockMetrics) AddNotesSkipped(_ int)                            {}
func (m *mockMetrics) AddMediaBytes(_ int64)                            {}
