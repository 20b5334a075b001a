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
Package span runs guest code within trace spans and emits events.

# Quick Start

Run a function inside a span:

	result := span.WithinNamed(bridge.LevelTrace, "apply-block", func() int {
	    return apply(block)
	})

Or hold a guard for the rest of a scope:

	s := span.InfoSpan("runtime::vm", "execute", bridge.F("block", bridge.U64(n)))
	defer s.Close()
	g := s.Enter()
	defer g.Exit()

A span can be exited and entered again, for example around a suspension,
until it is closed:

	g = s.Enter()
	resume()
	g.Exit()

Events are point-in-time:

	span.Warn("runtime::vm", "fuel low", bridge.F("remaining", bridge.U64(fuel)))

# Build Configurations

The same API compiles three ways:

  - default: calls route to the subscriber installed with bridge.Install.
    With nothing installed every call is a no-op and allocates nothing.
  - tracebridge_native: calls route straight to the host's OpenTelemetry
    backend; the registry is not consulted.
  - tracebridge_off: every operation is an empty function.

Bodies always run, and always return the same results, in all three.
*/
package span
