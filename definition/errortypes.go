// Copyright 2025 The Rivaas Authors
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

package definition

import (
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"sort"
)

// DefaultErrorTypes returns the error filters every loader knows.
//
//	path_error  *fs.PathError
//	url_error   *url.Error
//	net_error   net.Error
//	timeout     any error with a Timeout() bool method
//	max_bytes   *http.MaxBytesError
func DefaultErrorTypes() map[string]reflect.Type {
	return map[string]reflect.Type{
		"path_error": reflect.TypeFor[*fs.PathError](),
		"url_error":  reflect.TypeFor[*url.Error](),
		"net_error":  reflect.TypeFor[net.Error](),
		"timeout":    reflect.TypeFor[interface{ Timeout() bool }](),
		"max_bytes":  reflect.TypeFor[*http.MaxBytesError](),
	}
}

type errorTypes map[string]reflect.Type

func (e errorTypes) lookup(name string) (reflect.Type, error) {
	if name == "" {
		return nil, nil
	}
	if t, ok := e[name]; ok {
		return t, nil
	}

	known := make([]string, 0, len(e))
	for k := range e {
		known = append(known, k)
	}
	sort.Strings(known)

	return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownErrorType, name, known)
}
