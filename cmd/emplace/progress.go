package main

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"bitbucket.org/smartystreets/emplace/contracts"
)

var suffixes = [5]string{"B", "KB", "MB", "GB", "TB"}

func round(val float64, roundOn float64, places int) (newVal float64) {
	var rounded float64
	pow := math.Pow(10, float64(places))
	digit := pow * val
	_, div := math.Modf(digit)
	if div >= roundOn {
		rounded = math.Ceil(digit)
	} else {
		rounded = math.Floor(digit)
	}
	newVal = rounded / pow
	return
}

func humanFileSize(size float64) string {
	if size < 1 {
		return "0 B"
	}
	base := math.Log(size) / math.Log(1024)
	getSize := round(math.Pow(1024, base-math.Floor(base)), .5, 2)
	getSuffix := suffixes[int(math.Floor(base))]
	return strconv.FormatFloat(getSize, 'f', -1, 64) + " " + getSuffix
}

// progressPrinter renders phase transitions and rolling download
// counts on a single rewritten terminal line.
type progressPrinter struct {
	output    io.Writer
	lastPhase contracts.Phase
	rewriting bool
}

func newProgressPrinter(output io.Writer) *progressPrinter {
	return &progressPrinter{output: output, lastPhase: contracts.PhaseIdle}
}

func (this *progressPrinter) Report(phase contracts.Phase, bytesDownloaded, bytesTotal int64) {
	if phase == contracts.PhaseFetching {
		this.rewriting = true
		_, _ = fmt.Fprintf(this.output, "\033[2K\rDownloading archive... %s%s.",
			humanFileSize(float64(bytesDownloaded)), this.describeTotal(bytesTotal))
		this.lastPhase = phase
		return
	}
	if phase == this.lastPhase {
		return
	}
	this.breakLine()
	if phase == contracts.PhaseSucceeded {
		_, _ = fmt.Fprintln(this.output, "Done.")
	} else {
		_, _ = fmt.Fprintf(this.output, "%s...\n", capitalize(phase.String()))
	}
	this.lastPhase = phase
}

func (this *progressPrinter) describeTotal(bytesTotal int64) string {
	if bytesTotal == contracts.UnknownTotal {
		return ""
	}
	return " of " + humanFileSize(float64(bytesTotal))
}

func (this *progressPrinter) Finish() {
	this.breakLine()
}

func (this *progressPrinter) breakLine() {
	if this.rewriting {
		_, _ = fmt.Fprintln(this.output)
		this.rewriting = false
	}
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	return string(word[0]-'a'+'A') + word[1:]
}
