package digest

import "fmt"

// hexFanout fans a 40-char hex digest out as XYZ/ABC/<full>: three
// characters then three characters, two intermediate directories.
func hexFanout(digest string, wantLen int) ([]string, error) {
	if len(digest) != wantLen {
		return nil, fmt.Errorf("digest: fanout: want %d characters, got %d", wantLen, len(digest))
	}
	if len(digest) < 6 {
		return nil, fmt.Errorf("digest: fanout: digest too short for fanout: %q", digest)
	}
	return []string{digest[0:3], digest[3:6]}, nil
}

// nabFanout fans a 43-char nab digest out across five intermediate
// directories, each doubling in length: 1, 2, 4, 8, 16.
func nabFanout(digest string, wantLen int) ([]string, error) {
	if len(digest) != wantLen {
		return nil, fmt.Errorf("digest: fanout: want %d characters, got %d", wantLen, len(digest))
	}
	widths := []int{1, 2, 4, 8, 16}
	dirs := make([]string, 0, len(widths))
	off := 0
	for _, w := range widths {
		if off+w > len(digest) {
			return nil, fmt.Errorf("digest: fanout: digest too short for nab fanout: %q", digest)
		}
		dirs = append(dirs, digest[off:off+w])
		off += w
	}
	return dirs, nil
}
