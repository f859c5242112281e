// Copyright 2025 Poiesic Systems
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

// Package compose turns service records into the canonical text used as
// embedding input.
//
// Fields are emitted in a fixed priority order. The primary fields (name,
// subtitle, description) are written as-is so the headline dominates the
// embedding; every later field carries a human-readable label so the
// embedding captures what the text means, not just what it says.
//
// All field values are stripped of HTML markup before composition and empty
// fields are skipped entirely, so no labeled line is ever empty.
package compose
