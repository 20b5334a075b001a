// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package sandbox runs JavaScript guest scripts whose only way to reach the
host is the tracing bridge.

Each run gets a fresh goja VM. Module loading globals are removed, timers
are no-ops, and console output becomes INFO (or WARN, ERROR, DEBUG) events
under the "console" target. The host exposes six functions on __host that
exchange only primitives:

	enabled(level, target, name) -> bool
	newSpan(level, fields)       -> id
	record(id, fields)
	event(level, target, message, fields)
	enter(id)
	exit(id)

newSpan always creates a span named wasm_tracing. The guest library
installed as the global "tracing" puts the real name and target in the
reserved "name" and "target" fields:

	tracing.withinSpan("info", "handler", function (span) {
	    tracing.debug("loaded", {rows: 3}, "app::db");
	    span.record({status: "ok"});
	}, {}, "app");

Span ids cross as JS numbers. Ids above 2^53 are not representable and the
span is treated as disabled.

Every run is wrapped in an INFO span named "execute" under the "sandbox"
target. Spans the script entered but never exited are exited when the run
ends, including when it throws or is interrupted.
*/
package sandbox
