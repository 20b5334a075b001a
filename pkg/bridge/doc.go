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
Package bridge defines the data that crosses the guest/host tracing boundary.

Code running inside a sandbox cannot hold references into host memory and may not
have a tracing backend linked in. Everything it exchanges with the host is built
from primitive values: booleans, 64-bit integers, floats and strings. This package
provides those values, the records assembled from them, and the capability the
host implements to consume them.

# Overview

  - Level: ordered severity (TRACE < DEBUG < INFO < WARN < ERROR)
  - Value and FieldSet: flat, ordered name/value pairs
  - Metadata, Attributes, Event: "what kind of span or event" plus its values
  - Subscriber: the five operations the guest may invoke on the host
  - Install and Current: the write-once, process-wide subscriber slot

# Installing a subscriber

The host installs exactly one subscriber at startup:

	if !bridge.Install(sub) {
	    // another subscriber won the race; sub is never used
	}

Guest code reaches it through Current, which returns nil until a subscriber is
installed. Most callers should use package span instead of calling the
subscriber directly.

# Reserved identifiers

Some call sites can only create spans with a generic name. They set the span
name to TraceIdentifier and carry the real target and name in the fields named
TargetKey and NameKey. Consumers call Resolve to recover them:

	name, target := bridge.Resolve(&attrs.Metadata, attrs.Values)

Code that records its own fields must not use "target" or "name" on such spans.
A collision silently replaces the displayed name or target.
*/
package bridge
