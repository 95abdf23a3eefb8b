// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

// ProductName is the conventional product token embedders may use when
// building their own User-Agent/Server header values. The engine never
// injects this itself.
const ProductName = "h1proto/1.0"
