// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tracedriver replays a line-oriented allocator trace and
// reports throughput and peak utilization, in the tradition of a
// malloc-lab mdriver. Grounded on lldb/lab/1/main.go's flag+timed-loop
// driver shape and lldb/db_bench/main_test.go's "drive the allocator
// through a canned workload and report" idea.
//
// Trace format, one operation per line:
//
//	a <id> <size>   allocate <size> bytes, remember the result as <id>
//	r <id> <size>   resize the block known as <id> to <size> bytes
//	f <id>          release the block known as <id>
//
// Blank lines and lines starting with # are ignored.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cznic/malloc/malloc"
)

var (
	traceFile = flag.String("trace", "", "path to the trace file (required)")
	capacity  = flag.Int64("capacity", 1<<26, "heap arena capacity in bytes")
	chunkSize = flag.Int64("chunk", 1<<16, "Sbrk growth granularity in bytes")
	checked   = flag.Bool("checked", false, "run the heap checker after every operation")
)

type op struct {
	kind byte // 'a', 'r', or 'f'
	id   string
	size int
}

func parseTrace(r io.Reader) ([]op, error) {
	var ops []op
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: malformed: %q", lineNo, line)
		}

		o := op{kind: fields[0][0], id: fields[1]}
		switch o.kind {
		case 'a', 'r':
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: %q needs a size", lineNo, line)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			o.size = n
		case 'f':
		default:
			return nil, fmt.Errorf("line %d: unknown op %q", lineNo, fields[0])
		}
		ops = append(ops, o)
	}
	return ops, sc.Err()
}

func replay(a *malloc.Allocator, ops []op) (peakLive int64) {
	live := map[string]malloc.Ptr{}
	liveBytes := map[string]int{}
	var liveTotal int64

	for _, o := range ops {
		switch o.kind {
		case 'a':
			p := a.Allocate(o.size)
			if p == malloc.Null {
				log.Fatalf("allocate %d bytes for %q failed (out of memory)", o.size, o.id)
			}
			live[o.id] = p
			liveBytes[o.id] = o.size
			liveTotal += int64(o.size)

		case 'r':
			p, ok := live[o.id]
			if !ok {
				log.Fatalf("resize of unknown id %q", o.id)
			}
			p2 := a.Resize(p, o.size)
			if p2 == malloc.Null && o.size != 0 {
				log.Fatalf("resize %q to %d bytes failed (out of memory)", o.id, o.size)
			}
			liveTotal += int64(o.size - liveBytes[o.id])
			if o.size == 0 {
				delete(live, o.id)
				delete(liveBytes, o.id)
			} else {
				live[o.id] = p2
				liveBytes[o.id] = o.size
			}

		case 'f':
			p, ok := live[o.id]
			if !ok {
				log.Fatalf("free of unknown id %q", o.id)
			}
			a.Release(p)
			liveTotal -= int64(liveBytes[o.id])
			delete(live, o.id)
			delete(liveBytes, o.id)
		}

		if liveTotal > peakLive {
			peakLive = liveTotal
		}
	}
	return peakLive
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)

	if *traceFile == "" {
		log.Fatal("-trace is required")
	}
	f, err := os.Open(*traceFile)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	ops, err := parseTrace(f)
	if err != nil {
		log.Fatal(err)
	}

	a, err := malloc.New(malloc.Options{
		Capacity:  *capacity,
		ChunkSize: *chunkSize,
		Checked:   *checked,
	})
	if err != nil {
		log.Fatal(err)
	}

	t0 := time.Now()
	peakLive := replay(a, ops)
	elapsed := time.Since(t0)

	if err := a.Verify(nil); err != nil {
		log.Fatalf("heap corrupt after replay: %v", err)
	}

	heapHigh := a.HeapSize()
	var utilization float64
	if heapHigh > 0 {
		utilization = float64(peakLive) / float64(heapHigh)
	}

	fmt.Printf("%d ops in %s (%.0f ops/sec), peak live %d bytes, heap high-water %d bytes, utilization %.1f%%\n",
		len(ops), elapsed, float64(len(ops))/elapsed.Seconds(), peakLive, heapHigh, utilization*100)
}
