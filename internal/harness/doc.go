// Package harness runs feed sessions through YAML scenarios.
//
// A scenario seeds a fixture backend with an account history, drives one
// session through a list of steps and asserts on the final state. The
// session talks to a real repository over a SQLite cache, so the scenario
// exercises pagination, the cache, realtime delivery over the bus and the
// UI dispatcher together.
//
// # Scenario Format
//
//	name: prefetch_on_first_page
//	description: "First page triggers a budget prefetch"
//	account: acc-1
//	page_size: 3
//	min_budget_size: 3
//	history:
//	  generate: { count: 8 }
//	  activities:
//	    - { hash: gift, timestamp: 500, incoming: true, from: EQAB...WXYZ }
//	steps:
//	  - action: load_first_page
//	  - action: consume
//	  - action: realtime
//	    kind: update
//	    activities:
//	      - { hash: fresh, timestamp: 2000000 }
//	assertions:
//	  - { type: showing_count, count: 7 }
//	  - { type: state, state: idle }
//
// # Steps
//
//   - load_first_page, prepare, consume: session operations
//   - realtime: ingests activities through the repository, which publishes
//     an update of the given kind on the bus
//   - add_local, remove_local: optimistic activities
//   - backend_append, backend_fail: change what the backend serves next
//   - clean: tombstones the session
//
// # Settling
//
// After each step the harness waits until every published update has been
// handled, no fetch is in flight, the session queue and the dispatcher are
// drained, and no new fetch started while draining. The recorded trace is
// therefore deterministic and suitable for golden comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/prefetch.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario, harness.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
