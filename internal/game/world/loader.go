package world

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlZoneFile is the top-level YAML structure for zone files.
type yamlZoneFile struct {
	Zone yamlZone `yaml:"zone"`
}

// yamlZone is the YAML representation of a group of rooms.
type yamlZone struct {
	ID        string     `yaml:"id"`
	StartRoom string     `yaml:"start_room"`
	Rooms     []yamlRoom `yaml:"rooms"`
}

// yamlRoom is the YAML representation of a room. Exits omitted from the file
// mean no passage in that direction.
type yamlRoom struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	North       string `yaml:"north"`
	South       string `yaml:"south"`
	East        string `yaml:"east"`
	West        string `yaml:"west"`
}

// LoadRoomsFromFile reads one zone YAML file and returns its rooms plus the
// declared start room ID.
//
// Precondition: path must point to a valid YAML zone file.
// Postcondition: Returns validated rooms or a non-nil error.
func LoadRoomsFromFile(path string) ([]*Room, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading zone file %s: %w", path, err)
	}
	rooms, start, err := LoadRoomsFromBytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("zone file %s: %w", path, err)
	}
	return rooms, start, nil
}

// LoadRoomsFromBytes parses and validates rooms from zone YAML bytes.
//
// Postcondition: Every returned room passes Validate; duplicate IDs are rejected.
func LoadRoomsFromBytes(data []byte) ([]*Room, string, error) {
	var file yamlZoneFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, "", fmt.Errorf("parsing zone YAML: %w", err)
	}

	if file.Zone.ID == "" {
		return nil, "", fmt.Errorf("zone id must not be empty")
	}
	if len(file.Zone.Rooms) == 0 {
		return nil, "", fmt.Errorf("zone %q: must contain at least one room", file.Zone.ID)
	}

	seen := make(map[string]bool, len(file.Zone.Rooms))
	rooms := make([]*Room, 0, len(file.Zone.Rooms))
	for _, yr := range file.Zone.Rooms {
		room := &Room{
			ID:          yr.ID,
			Name:        yr.Name,
			Description: yr.Description,
			NorthID:     yr.North,
			SouthID:     yr.South,
			EastID:      yr.East,
			WestID:      yr.West,
		}
		if err := room.Validate(); err != nil {
			return nil, "", err
		}
		if seen[room.ID] {
			return nil, "", fmt.Errorf("duplicate room ID %q", room.ID)
		}
		seen[room.ID] = true
		rooms = append(rooms, room)
	}

	return rooms, file.Zone.StartRoom, nil
}

// LoadRoomsFromDir loads every .yaml/.yml zone file in dir, in lexical order.
// The first declared start room wins.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all rooms across all files, or a non-nil error.
func LoadRoomsFromDir(dir string) ([]*Room, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("reading zone directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, "", fmt.Errorf("no zone files found in %s", dir)
	}

	var all []*Room
	var startRoom string
	for _, name := range names {
		rooms, start, err := LoadRoomsFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, "", err
		}
		all = append(all, rooms...)
		if startRoom == "" {
			startRoom = start
		}
	}

	return all, startRoom, nil
}
