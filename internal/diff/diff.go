// Package diff compares two revisions of a LaTeX document line by line.
// It backs the change summary returned when the composer edits an existing
// document and the unified diff printed by `vibetex compose --diff`.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff line.
type Op int

const (
	OpKeep Op = iota
	OpAdd
	OpRemove
)

// Line is one line of a hunk.
type Line struct {
	Op   Op
	Text string
}

// Hunk is a contiguous group of changes with surrounding context.
// Starts are 1-based. When a side has no lines its start is the line
// preceding the hunk, 0 at the top of the file.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Stats summarizes a revision.
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Hunks   int `json:"hunks"`
}

// Changed reports whether the revision touched anything.
func (s Stats) Changed() bool { return s.Added > 0 || s.Removed > 0 }

// Revision is the line diff between two documents.
type Revision struct {
	Hunks []Hunk
	Stats Stats
}

// Engine computes revisions with a fixed amount of context.
type Engine struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	context int
}

// NewEngine returns an engine that keeps context lines around each change.
// A negative context is treated as zero.
func NewEngine(context int) *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp, context: max(context, 0)}
}

// Default uses three lines of context, like diff -u.
var Default = NewEngine(3)

// Compare diffs two documents with the default engine.
func Compare(before, after string) *Revision {
	return Default.Compare(before, after)
}

// Compare diffs before against after.
func (e *Engine) Compare(before, after string) *Revision {
	a, b, lines := e.dmp.DiffLinesToChars(before, after)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lines)

	ops := toOps(diffs)
	rev := &Revision{Hunks: e.group(ops)}
	for _, op := range ops {
		switch op.Op {
		case OpAdd:
			rev.Stats.Added++
		case OpRemove:
			rev.Stats.Removed++
		}
	}
	rev.Stats.Hunks = len(rev.Hunks)
	return rev
}

type lineOp struct {
	Line
	oldNo int // 1-based, 0 when absent on the old side
	newNo int
	// lines already seen on each side before this one
	oldSeen int
	newSeen int
}

func toOps(diffs []diffmatchpatch.Diff) []lineOp {
	var ops []lineOp
	oldNo, newNo := 0, 0
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		for _, text := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			op := lineOp{oldSeen: oldNo, newSeen: newNo}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldNo++
				newNo++
				op.Line, op.oldNo, op.newNo = Line{OpKeep, text}, oldNo, newNo
			case diffmatchpatch.DiffDelete:
				oldNo++
				op.Line, op.oldNo = Line{OpRemove, text}, oldNo
			case diffmatchpatch.DiffInsert:
				newNo++
				op.Line, op.newNo = Line{OpAdd, text}, newNo
			}
			ops = append(ops, op)
		}
	}
	return ops
}

// group merges changes closer than 2*context lines into one hunk.
func (e *Engine) group(ops []lineOp) []Hunk {
	var hunks []Hunk
	i := 0
	for i < len(ops) {
		if ops[i].Op == OpKeep {
			i++
			continue
		}
		start := max(i-e.context, 0)
		end := i
		for j := i; j < len(ops); j++ {
			if ops[j].Op != OpKeep {
				end = j
				continue
			}
			if j-end > 2*e.context {
				break
			}
		}
		stop := min(end+e.context+1, len(ops))
		hunks = append(hunks, makeHunk(ops[start:stop]))
		i = stop
	}
	return hunks
}

func makeHunk(ops []lineOp) Hunk {
	var h Hunk
	for _, op := range ops {
		h.Lines = append(h.Lines, op.Line)
		if op.oldNo > 0 {
			if h.OldStart == 0 {
				h.OldStart = op.oldNo
			}
			h.OldCount++
		}
		if op.newNo > 0 {
			if h.NewStart == 0 {
				h.NewStart = op.newNo
			}
			h.NewCount++
		}
	}
	// An empty side starts at the line before the hunk, as diff -u prints it.
	if h.OldCount == 0 && len(ops) > 0 {
		h.OldStart = ops[0].oldSeen
	}
	if h.NewCount == 0 && len(ops) > 0 {
		h.NewStart = ops[0].newSeen
	}
	return h
}

// Unified renders the revision in unified diff format. It returns "" when
// nothing changed.
func (r *Revision) Unified(oldName, newName string) string {
	if len(r.Hunks) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range r.Hunks {
		fmt.Fprintf(&sb, "@@ -%s +%s @@\n", span(h.OldStart, h.OldCount), span(h.NewStart, h.NewCount))
		for _, l := range h.Lines {
			switch l.Op {
			case OpKeep:
				sb.WriteByte(' ')
			case OpAdd:
				sb.WriteByte('+')
			case OpRemove:
				sb.WriteByte('-')
			}
			sb.WriteString(l.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func span(start, count int) string {
	if count == 1 {
		return fmt.Sprint(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}
