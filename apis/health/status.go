/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package health

// Status is a normalized health state for a sink.
type Status string

const (
	// StatusHealthy means the sink's last write succeeded (or none has
	// been attempted yet).
	StatusHealthy Status = "healthy"

	// StatusUnhealthy means the sink's consecutive-failure count is
	// above zero: its most recent write attempt failed.
	StatusUnhealthy Status = "unhealthy"
)
