package allowlist

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// FromFile reads one account per line. Blank lines and lines starting with #
// are skipped, anything else must be a hex address.
func FromFile(path string) ([]common.Address, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	members := make([]common.Address, 0)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !common.IsHexAddress(line) {
			return nil, fmt.Errorf("%s:%d: %q is not a hex address", path, lineNum, line)
		}
		members = append(members, common.HexToAddress(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return members, nil
}
