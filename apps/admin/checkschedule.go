package main

import (
	"fmt"
	"path/filepath"

	"github.com/jkimani/karo/core"
	scheduleseed "github.com/jkimani/karo/storage/schedule"
)

// checkSchedule loads the fee schedule seed and reports what it found. A bad
// seed fails here instead of at API start.
func (cli *commandLine) checkSchedule(path string) error {
	if path == "" {
		path = filepath.Join(core.Conf.WorkDir, "config", "fee_schedule.yml")
	}

	repo, err := scheduleseed.Load(path)
	if err != nil {
		return err
	}

	entries, err := repo.AllEntries()
	if err != nil {
		return err
	}
	items, err := repo.InKindItems()
	if err != nil {
		return err
	}

	fmt.Printf("%s: OK\n", path)
	fmt.Printf("  %d schedule entries\n", len(entries))
	fmt.Printf("  %d in-kind items\n", len(items))
	return nil
}
