// Package errors provides structured, actionable error messages for devstack.
//
// Every failure the engine reports carries a code and a category. The
// categories mirror the kinds of failure callers need to tell apart:
//   - not-ready: the manifest was read before the dev servers were live
//   - invalid-argument: empty keys or a router mode without a manifest
//   - not-found: an input path no router owns, or an unknown router
//   - configuration: a router names a bundler that does not exist, bad ports
//   - startup: a dev server (or its reload channel) failed to start
//
// # Usage
//
//	err := errors.New("E102").
//	    WithDetailf("Could not find entry %s in any router with bundler %s", input, name).
//	    WithSuggestion("Check the router's dir and handler settings")
//
//	if errors.HasCategory(err, errors.CategoryNotFound) {
//	    // 404
//	}
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E102: Entry not found
//	//
//	//   Could not find entry app/other.tsx in any router with bundler client
//	//
//	//   Hint: Check the router's dir and handler settings
//	//
//	//   Learn more: https://devstack.dev/docs/errors/E102
package errors
