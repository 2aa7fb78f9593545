// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command walblobtool inspects a WAL blob subsystem's on-disk files: the
// per-column-family directory carried by a log's index file, and the
// tuples each column family's iterator yields.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/petermattis/walblob/internal/base"
	"github.com/petermattis/walblob/vfs"
	"github.com/petermattis/walblob/wal"
)

var rootCmd = &cobra.Command{
	Use:   "walblobtool [command] (flags)",
	Short: "WAL blob subsystem introspection tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(dumpCmd, verifyCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var dumpCmd = &cobra.Command{
	Use:   "dump <log-file>",
	Short: "print a log file's column family directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <log-file>",
	Short: "iterate every column family and report checksum failures",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func openReader(logPath string) (*wal.BlobReader, error) {
	_, dfn, ok := base.ParseFilename(filepathBase(logPath))
	if !ok {
		dfn = 0
	}
	f, err := vfs.Default.Open(logPath)
	if err != nil {
		return nil, err
	}
	indexPath := strings.TrimSuffix(logPath, ".log") + ".windex"
	return wal.NewBlobReader(f, dfn, indexPath, wal.ReaderOptions{}), nil
}

func filepathBase(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func runDump(cmd *cobra.Command, args []string) error {
	r, err := openReader(args[0])
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"cf_id", "count"})

	// The directory isn't exposed directly; probe plausible small cf_ids
	// the way a human inspecting an unfamiliar log would, reporting
	// whichever resolve. A real deployment would track its own cf_id
	// space and pass it in; this tool has no other source of truth.
	for cfID := uint32(0); cfID < 64; cfID++ {
		it, err := wal.NewCFIterator(r, cfID, nil)
		if err != nil {
			continue
		}
		count := 0
		if err := it.SeekToFirst(); err != nil {
			return err
		}
		for it.Valid() {
			count++
			if err := it.Next(); err != nil {
				return err
			}
		}
		table.Append([]string{strconv.FormatUint(uint64(cfID), 10), strconv.Itoa(count)})
	}
	table.Render()
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	r, err := openReader(args[0])
	if err != nil {
		return err
	}
	var failures int
	for cfID := uint32(0); cfID < 64; cfID++ {
		it, err := wal.NewCFIterator(r, cfID, nil)
		if err != nil {
			continue
		}
		if err := it.SeekToFirst(); err != nil {
			fmt.Fprintf(os.Stderr, "cf %d: %v\n", cfID, err)
			failures++
			continue
		}
		for it.Valid() {
			if err := it.Next(); err != nil {
				fmt.Fprintf(os.Stderr, "cf %d: %v\n", cfID, err)
				failures++
				break
			}
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d column families failed verification", failures)
	}
	fmt.Println("ok")
	return nil
}
