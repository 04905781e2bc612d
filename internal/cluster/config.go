/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package cluster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/quorumfs/quorumfs/internal/qerrors"
)

// Config is the parsed cluster descriptor plus this process's derived
// role: N, NR, NW, every peer's contact info, the coordinator's
// contact, and the local role.
type Config struct {
	NR, NW             int
	ServerList         []ContactInfo
	CoordinatorContact ContactInfo
	Self               ContactInfo
	Role               Role
}

func (c *Config) N() int { return len(c.ServerList) }

// Load reads the descriptor at path (first line "NR,NW", subsequent
// lines "ip,port,role", exactly one role=1 line) and derives this
// replica's role by comparing self against the elected coordinator.
// It fails with *qerrors.ConfigError on a missing role=1 line,
// duplicate role=1 lines, an invalid quorum (NR+NW<=N or NW<=N/2), or
// a malformed line.
func Load(path string, self ContactInfo) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, qerrors.NewConfigError("opening descriptor "+path, err)
	}
	defer f.Close()
	return parse(f, self)
}

func parse(r io.Reader, self ContactInfo) (*Config, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, qerrors.NewConfigError("empty descriptor", nil)
	}
	nr, nw, err := parseQuorumLine(scanner.Text())
	if err != nil {
		return nil, qerrors.NewConfigError("parsing quorum line", err)
	}

	cfg := &Config{NR: nr, NW: nw, Self: self}
	coordSeen := false
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		contact, isCoord, err := parsePeerLine(line)
		if err != nil {
			return nil, qerrors.NewConfigError(fmt.Sprintf("parsing line %d", lineNo), err)
		}
		cfg.ServerList = append(cfg.ServerList, contact)
		if isCoord {
			if coordSeen {
				return nil, qerrors.NewConfigError("more than one coordinator (role=1) line", nil)
			}
			coordSeen = true
			cfg.CoordinatorContact = contact
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, qerrors.NewConfigError("reading descriptor", err)
	}
	if !coordSeen {
		return nil, qerrors.NewConfigError("no coordinator (role=1) line found", nil)
	}

	n := len(cfg.ServerList)
	if !(cfg.NR+cfg.NW > n && cfg.NW > n/2) {
		return nil, qerrors.NewConfigError(
			fmt.Sprintf("invalid quorum sizes: NR=%d NW=%d N=%d", cfg.NR, cfg.NW, n), nil)
	}

	if cfg.Self.Equal(cfg.CoordinatorContact) {
		cfg.Role = RoleCoordinator
	} else {
		cfg.Role = RoleFollower
	}
	return cfg, nil
}

func parseQuorumLine(line string) (nr, nw int, err error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"NR,NW\", got %q", line)
	}
	nr, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad NR: %w", err)
	}
	nw, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad NW: %w", err)
	}
	return nr, nw, nil
}

func parsePeerLine(line string) (contact ContactInfo, isCoord bool, err error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return ContactInfo{}, false, fmt.Errorf("expected \"ip,port,role\", got %q", line)
	}
	ip := strings.TrimSpace(parts[0])
	port, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return ContactInfo{}, false, fmt.Errorf("bad port: %w", err)
	}
	role := strings.TrimSpace(parts[2])
	switch role {
	case "0":
		isCoord = false
	case "1":
		isCoord = true
	default:
		return ContactInfo{}, false, fmt.Errorf("role must be 0 or 1, got %q", role)
	}
	return ContactInfo{IP: ip, Port: port}, isCoord, nil
}
