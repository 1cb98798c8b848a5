package builder

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/invoice-normalizer/pkg/utils"
)

// =============================================================================
// BATCH
// =============================================================================

// Item is one (file, provider, account) unit of work.
type Item struct {
	Path     string `yaml:"path"`
	Provider string `yaml:"provider"`
	Account  string `yaml:"account"`
}

// Batch is the ordered list of items waiting to be processed. It is not safe
// for concurrent use; build it fully before handing Items to a Builder.
type Batch struct {
	items []Item
}

// Add appends an item after checking that its file exists.
func (b *Batch) Add(item Item) error {
	if strings.TrimSpace(item.Provider) == "" {
		return fmt.Errorf("item %s: provider is required", item.Path)
	}
	if !utils.IsRegularFile(item.Path) {
		return fmt.Errorf("item %s: not a readable file", item.Path)
	}
	b.items = append(b.items, item)
	return nil
}

// AddFolder queues every file in dir matching patterns under the same
// provider and account.
//
// PARAMETERS:
//   - dir: The folder to scan (not recursive).
//   - provider: The provider tag for every file found.
//   - account: The account for every file found (may be empty for keller).
//   - patterns: Glob patterns; empty means "*.csv".
//
// RETURNS:
//   - The number of items added.
//   - An error if the folder cannot be scanned or contains no matching file.
func (b *Batch) AddFolder(dir, provider, account string, patterns []string) (int, error) {
	files, err := utils.DiscoverFiles(dir, patterns)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("folder %s: no files match %v", dir, patterns)
	}
	staged := Batch{}
	for _, path := range files {
		if err := staged.Add(Item{Path: path, Provider: provider, Account: account}); err != nil {
			return 0, err
		}
	}
	b.items = append(b.items, staged.items...)
	return staged.Len(), nil
}

// Remove deletes the item at index.
func (b *Batch) Remove(index int) error {
	if index < 0 || index >= len(b.items) {
		return fmt.Errorf("remove item %d: batch has %d items", index, len(b.items))
	}
	b.items = append(b.items[:index], b.items[index+1:]...)
	return nil
}

// Items returns a copy of the queued items in order.
func (b *Batch) Items() []Item {
	out := make([]Item, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of queued items.
func (b *Batch) Len() int {
	return len(b.items)
}
