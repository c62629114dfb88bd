package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// UniformDelay pads failed sign-in responses to a minimum duration so
// response time cannot reveal why an attempt failed. A random jitter on top
// keeps the floor itself from being measurable.
type UniformDelay struct {
	min    time.Duration
	jitter time.Duration
}

// NewUniformDelay creates a delay with the given floor and jitter range
func NewUniformDelay(min, jitter time.Duration) *UniformDelay {
	return &UniformDelay{
		min:    min,
		jitter: jitter,
	}
}

// Wait sleeps for the full padded duration
func (d *UniformDelay) Wait() {
	time.Sleep(d.target())
}

// WaitFrom sleeps until at least the padded duration has elapsed since
// start. Work already done counts toward the target, so fast and slow
// failure paths come out the same.
func (d *UniformDelay) WaitFrom(start time.Time) {
	target := d.target()

	elapsed := time.Since(start)
	if elapsed < target {
		time.Sleep(target - elapsed)
	}
}

func (d *UniformDelay) target() time.Duration {
	target := d.min
	if d.jitter > 0 {
		target += cryptoRandDuration(d.jitter)
	}
	return target
}

// cryptoRandDuration returns a secure random duration in [0, max).
// crypto/rand, not math/rand: the jitter exists to defeat measurement.
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}

	return time.Duration(binary.BigEndian.Uint64(buf[:]) % uint64(max))
}
