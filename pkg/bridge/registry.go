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

package bridge

import "sync/atomic"

// slot holds the installed subscriber. The interface is boxed so that the
// pointer can be swapped atomically.
type slot struct {
	sub Subscriber
}

// installed is written at most once for the life of the process.
var installed atomic.Pointer[slot]

// Install places sub in the process-wide slot. The first successful call wins;
// later calls, and calls with a nil subscriber, leave the slot unchanged and
// return false. There is no way to uninstall.
func Install(sub Subscriber) bool {
	if sub == nil {
		return false
	}
	return installed.CompareAndSwap(nil, &slot{sub: sub})
}

// Current returns the installed subscriber, or nil if none was installed.
// Once non-nil it returns the same instance for the rest of the process.
func Current() Subscriber {
	if s := installed.Load(); s != nil {
		return s.sub
	}
	return nil
}
