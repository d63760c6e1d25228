// Copyright 2019-2025 The Liqo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors handles the errors that signal an internal inconsistency, rather than a failure of the environment.
package errors

import (
	"fmt"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

// FlagNamePanicOnInconsistency is the flag enabling the pedantic mode.
const FlagNamePanicOnInconsistency = "panic-on-inconsistency"

var panicOnErrorMode = false

// InitFlags initializes the flags to configure the pedantic mode.
func InitFlags(flagset *pflag.FlagSet) {
	if flagset == nil {
		flagset = pflag.CommandLine
	}

	flagset.BoolVar(&panicOnErrorMode, FlagNamePanicOnInconsistency, panicOnErrorMode,
		"Enable a pedantic mode which causes a panic if the engine state becomes inconsistent")
}

// SetPanicOnErrorMode can be used to set or unset the panic mode.
func SetPanicOnErrorMode(status bool) {
	panicOnErrorMode = status
}

// Must wraps a function call that can only fail if the internal state is inconsistent.
// If some error occurred, it panics in pedantic mode, otherwise it logs the error and returns false.
// Returns true if no error occurred.
func Must(err error) bool {
	if err == nil {
		return true
	}
	if panicOnErrorMode {
		panic(err)
	}
	klog.Errorf("Inconsistency detected: %s", err)
	return false
}

// Mustf is like Must, but prefixes the error with the formatted context.
func Mustf(err error, format string, args ...any) bool {
	if err == nil {
		return true
	}
	return Must(fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err))
}
