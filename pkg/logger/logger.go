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

// Package logger provides the single leveled logger shared by every
// package in this module. It exists so that no package constructs its
// own logrus.Logger, and so a caller embedding this library can redirect
// or silence all of its diagnostic output from one place.
package logger

import "github.com/sirupsen/logrus"

// Root is the shared logger instance. Callers embedding this library may
// replace its output, level or formatter before calling thread.Init.
var Root = logrus.New()

func init() {
	// Only warnings and errors are emitted by default; debug and info
	// diagnostics are opt-in, since spec.md treats logging as an external
	// collaborator, not a contractual behavior.
	Root.SetLevel(logrus.WarnLevel)
}

// ForSubsystem returns a *logrus.Entry tagged with subsystem, the way
// gvisor's log package is called as log.Infof/log.Warningf from deep in
// the kernel and platform packages with an implicit prefix.
func ForSubsystem(name string) *logrus.Entry {
	return Root.WithField("subsystem", name)
}
