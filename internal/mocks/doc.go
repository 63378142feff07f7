// Package mocks provides shared mock implementations for testing.
//
// This package contains mock implementations of external service clients
// that can be used by any package's tests.
//
// # Usage
//
//	import "mergegate/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    client := mocks.NewMockForgeClient()
//	    client.ReturnState(&forge.PullRequestState{Approvals: 2})
//	    // Use client in test...
//	}
//
// # Available Mocks
//
//   - MockForgeClient: Mock for pkg/forge.Client
package mocks
