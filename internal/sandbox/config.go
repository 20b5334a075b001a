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

package sandbox

import "time"

// Config holds guest runtime limits.
type Config struct {
	// Timeout bounds each script run. Zero disables the limit.
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`

	// MaxCallStackSize caps guest recursion depth.
	MaxCallStackSize int `yaml:"max_call_stack_size" envconfig:"MAX_CALL_STACK_SIZE"`
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		MaxCallStackSize: 1024,
	}
}
