// Copyright 2018 The gVisor Authors.
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

package thread

// Handle identifies a logical thread. In the 1:1 runtime it is the
// kernel task id; in the M:1 runtime it is a monotonically allocated
// sequence number starting at 0 for the bootstrap thread. Handles are
// never reused within one process run.
type Handle int32
