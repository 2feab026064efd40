/*
Copyright 2023 The Netharvest Authors.

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

package ewma

const (
	defaultAge = 30.0
	// constDecayFactor is the decay factor used when no age is given
	constDecayFactor = 2.0 / (defaultAge + 1.0)
)

type EWMA interface {
	// Add adds a new value to the EWMA
	Add(float64)
	// Get returns the current value of the EWMA
	Get() float64
	// Reset resets the EWMA to the initial value
	Reset()
	// Set sets the EWMA to the given value
	Set(float64)
}

// SimpleEWMA is an exponentially weighted moving average. Domain histories
// use it to keep a smoothed bytes-per-object figure across harvests.
type SimpleEWMA struct {
	// alpha is the smoothing factor
	alpha float64
	// value is the current value of the EWMA
	value float64
	// init is a flag to indicate if the EWMA has been initialized
	init bool
}

// NewSimpleEWMA returns a new SimpleEWMA. The optional argument is the
// averaging age from which the smoothing factor is derived.
func NewSimpleEWMA(age ...float64) *SimpleEWMA {
	if len(age) > 0 {
		return &SimpleEWMA{alpha: 2.0 / (age[0] + 1.0)}
	}
	return &SimpleEWMA{alpha: constDecayFactor}
}

// Add adds a new value to the EWMA
func (s *SimpleEWMA) Add(value float64) {
	if !s.init {
		s.value = value
		s.init = true
		return
	}
	s.value = s.value + s.alpha*(value-s.value)
}

// Get returns the current value of the EWMA
func (s *SimpleEWMA) Get() float64 {
	return s.value
}

// Reset resets the EWMA to the initial value
func (s *SimpleEWMA) Reset() {
	s.value = 0
	s.init = false
}

// Set sets the EWMA to the given value
func (s *SimpleEWMA) Set(value float64) {
	s.value = value
	s.init = true
}
