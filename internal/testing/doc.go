// Package testing provides test utilities, builders, and fixtures for unit tests.
//
//   - ConfigBuilder: fluent builder for run configurations
//   - CloudFixture: pre-configured in-memory clouds for common scenarios
//   - MockCloudClient: testify mock of the cloud client for call assertions
//   - RecordingSleeper: retry sleeper that records delays instead of waiting
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithStorageAuth(config.StorageAuthKeyless).
//	    Build()
//
//	cloud := testing.NewCloudFixture().SharedKeyDenied()
package testing
