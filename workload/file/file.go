// Package file loads workloads from structured transaction files.
//
// A transaction file is a comma-separated table. The header line marks
// each column as a read-object column, a write-object column, or an
// ignored column, by label prefix. Every subsequent line describes one
// transaction: a non-empty cell at a marked column is a base-10 object
// address, an empty cell leaves that slot invalid.
package file

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/puppetmaster-fpga/pm-host/common/errors"
	"github.com/puppetmaster-fpga/pm-host/common/logging"
	scheduler "github.com/puppetmaster-fpga/pm-host/scheduler/api"
	workload "github.com/puppetmaster-fpga/pm-host/workload/api"
)

// ModuleName is the error module name.
const ModuleName = "workload/file"

const (
	// readLabelPrefix marks a header column as a read-object column.
	readLabelPrefix = "Read object"
	// writeLabelPrefix marks a header column as a write-object column.
	writeLabelPrefix = "Written object"
)

// Error codes double as process exit codes.
var (
	// ErrFileNotFound is the error returned when a transaction file
	// cannot be opened.
	ErrFileNotFound = errors.New(ModuleName, 1, "workload/file: file does not exist")

	// ErrMissingHeader is the error returned when a transaction file
	// has no header line.
	ErrMissingHeader = errors.New(ModuleName, 2, "workload/file: no header found in file")

	// ErrMalformedAddress is the error returned when a cell in a
	// marked column does not parse as an unsigned integer.
	ErrMalformedAddress = errors.New(ModuleName, 3, "workload/file: not an address")

	// ErrAddressOutOfRange is the error returned when an address does
	// not fit the object address width.
	ErrAddressOutOfRange = errors.New(ModuleName, 4, "workload/file: address out of range")
)

// Builder is a structured-file workload builder. Transactions from
// multiple files are concatenated in path order.
type Builder struct {
	logger *logging.Logger
	paths  []string
}

// Name implements api.Builder.
func (b *Builder) Name() string {
	return "file"
}

// Build implements api.Builder.
func (b *Builder) Build() (workload.Workload, error) {
	var wl workload.Workload
	for _, path := range b.paths {
		b.logger.Info("loading transactions",
			"path", path,
		)

		txs, err := b.loadFile(path)
		if err != nil {
			return nil, err
		}
		wl = append(wl, txs...)
	}
	return wl, nil
}

func (b *Builder) loadFile(path string) (workload.Workload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithContext(ErrFileNotFound, path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	if !scanner.Scan() {
		return nil, errors.WithContext(ErrMissingHeader, path)
	}
	readColumns, writeColumns := parseHeader(scanner.Text())

	var txs workload.Workload
	for scanner.Scan() {
		tx, err := parseLine(scanner.Text(), readColumns, writeColumns)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("workload/file: failed reading %s: %w", path, err)
	}

	return txs, nil
}

// parseHeader determines which column indices carry read and write
// object addresses. Columns matching neither label prefix are ignored.
func parseHeader(header string) (readColumns, writeColumns map[int]bool) {
	readColumns = make(map[int]bool)
	writeColumns = make(map[int]bool)
	for i, label := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(label, readLabelPrefix):
			readColumns[i] = true
		case strings.HasPrefix(label, writeLabelPrefix):
			writeColumns[i] = true
		}
	}
	return
}

// parseLine builds one transaction from a content line.
//
// Only the first MaxTransactionObjects columns are considered; cells
// beyond that are silently ignored. This mirrors the transaction
// capacity of the hardware interface and is a documented limitation of
// the file format.
func parseLine(line string, readColumns, writeColumns map[int]bool) (*scheduler.Transaction, error) {
	tx := scheduler.NewTransaction()
	for i, cell := range strings.Split(line, ",") {
		if i >= scheduler.MaxTransactionObjects {
			break
		}
		if len(cell) == 0 || (!readColumns[i] && !writeColumns[i]) {
			continue
		}

		address, err := parseAddress(cell)
		if err != nil {
			return nil, err
		}
		if err = tx.SetSlot(i, scheduler.ObjectAccess{
			Valid:  true,
			Write:  writeColumns[i],
			Object: address,
		}); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// parseAddress parses a cell as a base-10 object address.
func parseAddress(cell string) (uint64, error) {
	address, err := strconv.ParseUint(cell, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, errors.WithContext(ErrAddressOutOfRange, cell)
		}
		return 0, errors.WithContext(ErrMalformedAddress, fmt.Sprintf("%q", cell))
	}
	return address, nil
}

// New creates a new structured-file workload builder over the given
// paths.
func New(paths ...string) *Builder {
	return &Builder{
		logger: logging.GetLogger("workload/file"),
		paths:  paths,
	}
}
