//go:build !windows

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

package reactor

import "golang.org/x/sys/unix"

// QuerySocketBuffers reads SO_RCVBUF/SO_SNDBUF off fd via getsockopt, the
// same raw-syscall escape hatch the teacher's ioutils/fileDescriptor
// package reaches for (there, syscall.Getrlimit/Setrlimit to raise the
// process-wide open-file limit; here, golang.org/x/sys/unix to read a
// per-connection kernel buffer size instead of raising a process limit).
func QuerySocketBuffers(fd uintptr) (SocketBuffers, error) {
	rcv, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	if err != nil {
		return SocketBuffers{}, SocketBufferQueryError.Error(err)
	}
	snd, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF)
	if err != nil {
		return SocketBuffers{}, SocketBufferQueryError.Error(err)
	}
	return SocketBuffers{ReceiveBuffer: rcv, SendBuffer: snd}, nil
}
