// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Command h1demo drives the h1proto engine over real net.Conn sockets: it
// is the embedder the core package itself deliberately isn't.
package main

import "github.com/packetflow/h1proto/cmd/h1demo/cmd"

func main() {
	cmd.Execute()
}
