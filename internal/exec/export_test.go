// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Internal hooks for tests

package exec

var Interrupted = interrupted
