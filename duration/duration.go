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

// Package duration wraps time.Duration with second-based configuration
// parsing and JSON/text marshaling, matching the tagging conventions used
// throughout this repository's config struct.
package duration

import (
	"strconv"
	"time"
)

// Duration is a time.Duration that (un)marshals from a plain integer number
// of seconds, the unit every Options field in spec.md §6 is expressed in.
type Duration time.Duration

// Seconds returns the duration expressed in whole seconds.
func (d Duration) Seconds() int64 {
	return int64(time.Duration(d) / time.Second)
}

// ToDuration returns the underlying time.Duration.
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// IsZero reports whether the duration is zero (spec.md's "0 disables"
// convention for ping-interval).
func (d Duration) IsZero() bool {
	return d == 0
}

// FromSeconds builds a Duration from a count of seconds.
func FromSeconds(s int64) Duration {
	return Duration(time.Duration(s) * time.Second)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(d.Seconds(), 10)), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}

	*d = FromSeconds(s)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(d.Seconds(), 10)), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	s, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}

	*d = FromSeconds(s)
	return nil
}

// String implements fmt.Stringer for logging.
func (d Duration) String() string {
	return time.Duration(d).String()
}
