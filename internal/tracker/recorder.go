// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"

	"github.com/relabs-tech/headtrack/internal/log"
	"github.com/relabs-tech/headtrack/internal/pose"
)

// Record holds the stages of one iteration: the raw sample, the centered
// and pivot-corrected pose, and the mapped output.
type Record struct {
	Seq         uint64
	Raw         pose.Pose
	Compensated pose.Pose
	Mapped      pose.Pose
}

// CSVRecorder returns a recorder that writes one CSV row per iteration to
// w, preceded by a header row. Write errors are logged once and further
// records are dropped.
func CSVRecorder(w io.Writer) func(Record) {
	cw := csv.NewWriter(w)
	var (
		once   sync.Once
		failed bool
	)
	return func(r Record) {
		if failed {
			return
		}
		once.Do(func() { cw.Write(csvHeader()) })

		row := make([]string, 0, 1+3*pose.NumAxes)
		row = append(row, strconv.FormatUint(r.Seq, 10))
		for _, p := range []pose.Pose{r.Raw, r.Compensated, r.Mapped} {
			for _, v := range p {
				row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
			}
		}
		cw.Write(row)
		cw.Flush()
		if err := cw.Error(); err != nil {
			failed = true
			log.Error("track recorder write failed, recording stopped", "err", err)
		}
	}
}

func csvHeader() []string {
	h := []string{"seq"}
	for _, stage := range []string{"raw", "corrected", "mapped"} {
		for i := 0; i < pose.NumAxes; i++ {
			h = append(h, stage+"_"+pose.Axis(i).String())
		}
	}
	return h
}
