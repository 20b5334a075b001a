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

//go:build !tracebridge_off && !tracebridge_native

package span

import "github.com/tombee/tracebridge/pkg/bridge"

// Backend names the build variant.
const Backend = "bridge"

// backend resolves the subscriber for each call. Sandboxed builds go through
// the write-once registry.
var backend = bridge.Current
