package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tanq16/segdl/internal/config"
	s3dl "github.com/tanq16/segdl/internal/downloaders/s3"
	"github.com/tanq16/segdl/internal/output"
	"github.com/tanq16/segdl/internal/scheduler"
	"github.com/tanq16/segdl/internal/utils"
)

var errInterrupted = errors.New("interrupted, unfinished downloads were cancelled")

// runDownloads submits every entry, renders progress until all jobs end
// and reports an error if any of them did not complete.
func runDownloads(parent context.Context, cfg *config.Config, entries []utils.DownloadEntry) error {
	if parent == nil {
		parent = context.Background()
	}
	utils.InitLogger(cfg.Debug)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		defer f.Close()
		utils.SetLogOutput(f)
	}
	log := utils.GetLogger("cli")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(scheduler.Options{
		Client:         utils.NewHTTPClient(cfg.HTTPClientConfig()),
		ProbeTimeout:   cfg.ProbeTimeout,
		SampleInterval: cfg.SampleInterval,
		BufferSize:     cfg.BufferSize,
		MaxActive:      cfg.Workers,
	})
	mgr := output.NewManager(os.Stdout)
	mgr.SetSpeedSource(sched.TotalSpeed)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		mgr.Consume(sched.Events())
	}()

	var resolver *s3dl.Resolver
	var submitErrs []error
	var ids []string
	submit := func(rawURL, dir string, connections int) {
		id, err := sched.Submit(ctx, rawURL, dir, connections)
		if err != nil {
			submitErrs = append(submitErrs, fmt.Errorf("%s: %w", rawURL, err))
			return
		}
		if snap, err := sched.Get(id); err == nil {
			mgr.Register(id, filepath.Base(snap.Dest))
		}
		ids = append(ids, id)
	}

	for _, entry := range entries {
		dir := entry.OutputDir
		if dir == "" {
			dir = cfg.OutputDir
		}
		connections := entry.Connections
		if connections == 0 {
			connections = cfg.Connections
		}
		if !s3dl.IsS3URL(entry.URL) {
			submit(entry.URL, dir, connections)
			continue
		}
		if resolver == nil {
			awsCfg, err := s3dl.LoadConfig(ctx, cfg.AWSProfile, cfg.AWSRegion)
			if err != nil {
				submitErrs = append(submitErrs, fmt.Errorf("%s: %w", entry.URL, err))
				continue
			}
			resolver = s3dl.NewResolver(awsCfg, 0)
		}
		objects, err := resolver.Resolve(ctx, entry.URL)
		if err != nil {
			submitErrs = append(submitErrs, fmt.Errorf("%s: %w", entry.URL, err))
			continue
		}
		output.PrintInfo(fmt.Sprintf("Resolved %d object(s) from %s", len(objects), entry.URL))
		for _, obj := range objects {
			submit(obj.URL, filepath.Join(dir, obj.RelDir), connections)
		}
	}
	log.Debug().Int("jobs", len(ids)).Int("rejected", len(submitErrs)).Msg("Submissions done")
	mgr.StartDisplay()

	for _, id := range ids {
		if _, err := sched.Wait(ctx, id); err != nil {
			break
		}
	}
	interrupted := ctx.Err() != nil && parent.Err() == nil
	sched.Close()
	<-consumed
	mgr.StopDisplay()

	for _, err := range submitErrs {
		output.PrintError(err.Error())
	}
	switch {
	case interrupted:
		return errInterrupted
	case mgr.Failures() > 0 || len(submitErrs) > 0:
		return errors.New("encountered failed download(s)")
	}
	return nil
}
