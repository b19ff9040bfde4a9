// Package logs reads courier's JSON log file for the CLI.
//
// Last returns the trailing lines of the file with bounded memory, Since reads
// everything appended after an offset, and Follow polls for new lines until its
// context is cancelled. A Filter narrows output by level, configuration,
// delivery, or free text, so `courier logs -f -C prod` shows one gateway's
// activity as it happens.
package logs
