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

// Package pipeline declares the contract for inklog's single ingestion
// entry point.
//
// A record handed to Entry.OnRecord passes through masking, a synchronous
// console write, and then a bounded queue feeding one worker per
// asynchronous sink (file, database); archival runs on its own
// scheduler, not through a queue. This package fixes only
// the shape of that entry point; the queue, workers, and supervisor that
// actually move records are runtime concerns and live in runtime/ingest.
package pipeline
