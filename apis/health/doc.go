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

// Package health tracks per-sink liveness for inklog's ingestion pipeline.
//
// Unlike a pull-based checker model, health here is push-based: sink
// workers report success/failure as they happen, and the Map keeps a
// consecutive-failure counter per sink from which the healthy flag is
// derived: a sink is healthy if and only if its consecutive-failure
// count is zero.
package health
