/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package instance

import (
	"fmt"

	liberr "github.com/nabbar/rimecore/rerr"
)

const (
	AlreadyDestroyedError liberr.CodeError = iota + liberr.MinPkgInstance
	AdapterNameInUseError
	PluginNameInUseError
	TypeIdInUseError
	InvalidConfigError
)

func init() {
	if liberr.ExistInMapMessage(AlreadyDestroyedError) {
		panic(fmt.Errorf("error code collision with package instance"))
	}
	liberr.RegisterIdFctMessage(AlreadyDestroyedError, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case AlreadyDestroyedError:
		return "communicator already destroyed"
	case AdapterNameInUseError:
		return "an object adapter with this name already exists"
	case PluginNameInUseError:
		return "a plugin with this name is already registered"
	case TypeIdInUseError:
		return "a value factory or descriptor is already registered for this type-id"
	case InvalidConfigError:
		return "engine configuration failed validation"
	}
	return liberr.NullMessage
}
