package sqlxrepos

import (
	"fmt"
	"sort"
)

// batchSize caps one write batch, matching the DynamoDB BatchWriteItem limit
// so both backends honor the same contract.
const batchSize = 25

// chunkSize yields [start, end) index pairs over n items in batches.
func chunkSize(n int) [][2]int {
	var chunks [][2]int
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		chunks = append(chunks, [2]int{start, end})
	}
	return chunks
}

// whereEq builds an AND-ed WHERE clause for the non-empty values.
func whereEq(fields map[string]string) (string, []interface{}) {
	var clause string
	var args []interface{}
	for _, col := range sortedKeys(fields) {
		val := fields[col]
		if val == "" {
			continue
		}
		if clause == "" {
			clause = " WHERE "
		} else {
			clause += " AND "
		}
		args = append(args, val)
		clause += fmt.Sprintf("%s = $%d", col, len(args))
	}
	return clause, args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
