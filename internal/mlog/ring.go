package mlog

import (
	"container/ring"
	"strconv"
	"sync"
	"time"
)

// Ring keeps the last size formatted log lines in memory, timestamped on
// arrival. Adapted from the teacher's pkg/minilog ring buffer.
type Ring struct {
	size int

	mu sync.Mutex
	r  *ring.Ring
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{r: ring.New(size), size: size}
}

// Println timestamps and stores one formatted line.
func (l *Ring) Println(v ...interface{}) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var buf []byte

	year, month, day := now.Date()
	buf = strconv.AppendInt(buf, int64(year), 10)
	buf = append(buf, '/')
	buf = strconv.AppendInt(buf, int64(month), 10)
	buf = append(buf, '/')
	buf = strconv.AppendInt(buf, int64(day), 10)
	buf = append(buf, ' ')

	hour, min, sec := now.Clock()
	buf = strconv.AppendInt(buf, int64(hour), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(min), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(sec), 10)
	buf = append(buf, ' ')

	for _, a := range v {
		if s, ok := a.(string); ok {
			buf = append(buf, s...)
		}
	}

	l.r = l.r.Next()
	l.r.Value = string(buf)
}

// Dump returns the buffered lines, oldest to newest.
func (l *Ring) Dump() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := make([]string, 0, l.size)
	l.r.Next().Do(func(v interface{}) {
		if v == nil {
			return
		}
		res = append(res, v.(string))
	})
	return res
}
