// Command viewer dumps the pairlink store to the terminal.
// It opens Badger read-only, so it can run next to a live server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "/tmp/pairlink", "Path to badger DB")
	// Default scans messages; use "group:", "conn:" or "user:" for the rest
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Entity", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				table.Append(mapRow(key, val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	// BypassLockGuard allows opening while the server holds the lock
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	return badger.Open(opts)
}

func mapRow(key string, val []byte) []string {
	parts := strings.Split(key, ":")
	kind := parts[0]
	timestamp := "--:--:--"
	entity := "--------"
	detail := fmt.Sprintf("Size: %d bytes", len(val))

	switch kind {
	case "msg":
		if len(parts) >= 4 {
			if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
				timestamp = time.Unix(0, tsNano).Format("15:04:05")
			}
			entity = shorten(parts[3])
		}
		detail = messageDetail(val)
	case "group":
		if len(parts) >= 2 {
			entity = parts[1]
		}
		detail = groupDetail(val)
	case "conn", "user", "msgid":
		if len(parts) >= 2 {
			entity = shorten(parts[1])
		}
	}

	return []string{key, strings.ToUpper(kind), timestamp, entity, detail}
}

func messageDetail(val []byte) string {
	var m struct {
		Sender    string `json:"sender"`
		Recipient string `json:"recipient"`
		Content   string `json:"content"`
		ReadAt    *int64 `json:"read_at"`
	}
	if err := json.Unmarshal(val, &m); err != nil {
		return "unreadable"
	}
	state := "unread"
	if m.ReadAt != nil {
		state = "read"
	}
	return fmt.Sprintf("%s -> %s (%s): %s", m.Sender, m.Recipient, state, shorten(m.Content))
}

func groupDetail(val []byte) string {
	var g struct {
		Connections []struct {
			Username string `json:"username"`
		} `json:"connections"`
	}
	if err := json.Unmarshal(val, &g); err != nil {
		return "unreadable"
	}
	var users []string
	for _, c := range g.Connections {
		users = append(users, c.Username)
	}
	return fmt.Sprintf("%d joined [%s]", len(g.Connections), strings.Join(users, ","))
}

func shorten(s string) string {
	if len(s) > 24 {
		return s[:24] + "…"
	}
	return s
}
