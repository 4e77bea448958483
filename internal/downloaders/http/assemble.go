package httpdl

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/tanq16/segdl/internal/utils"
)

// Merge concatenates the part files in ascending range order into
// outputPath and then deletes them. On failure the part files stay on disk
// and the error is of KindMerge. A cancellation between parts removes the
// partial output and returns the context error.
func Merge(ctx context.Context, outputPath string, segments []*Segment, expected int64) error {
	log := utils.GetLogger("assembler")
	ordered := slices.Clone(segments)
	slices.SortFunc(ordered, func(a, b *Segment) int {
		return cmp.Compare(a.Range.Start, b.Range.Start)
	})
	for _, seg := range ordered {
		if seg.Outcome() != OutcomeSucceeded {
			return mergeError("check segments", fmt.Errorf("segment %d is %s", seg.ID, seg.Outcome()))
		}
	}

	destFile, err := os.Create(outputPath)
	if err != nil {
		return mergeError("create output file", err)
	}
	abort := func(err error) error {
		destFile.Close()
		os.Remove(outputPath)
		return err
	}

	var totalWritten int64
	for _, seg := range ordered {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		written, err := appendPart(destFile, seg.TempPath)
		if err != nil {
			return abort(mergeError("append part", err))
		}
		if written != seg.Range.Size() {
			return abort(mergeError("append part", fmt.Errorf("part %d holds %d bytes, expected %d", seg.ID, written, seg.Range.Size())))
		}
		totalWritten += written
	}
	if expected > 0 && totalWritten != expected {
		return abort(mergeError("verify size", fmt.Errorf("wrote %d bytes, expected %d", totalWritten, expected)))
	}
	if err := destFile.Sync(); err != nil {
		return abort(mergeError("sync output file", err))
	}
	if err := destFile.Close(); err != nil {
		os.Remove(outputPath)
		return mergeError("close output file", err)
	}

	for _, seg := range ordered {
		if err := os.Remove(seg.TempPath); err != nil {
			return mergeError("remove part", err)
		}
	}
	log.Debug().Int64("totalBytes", totalWritten).Str("outputFile", outputPath).Int("parts", len(ordered)).Msg("File assembly completed")
	return nil
}

func appendPart(dst io.Writer, partPath string) (int64, error) {
	part, err := os.Open(partPath)
	if err != nil {
		return 0, err
	}
	defer part.Close()
	return io.Copy(dst, part)
}
