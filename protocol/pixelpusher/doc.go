// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package pixelpusher provides protocol constructs for the PixelPusher.
//
// This package complements the common protocol package, which offers top-level
// device protocol constructs.
//
// In addition to offering basic protocol definitions, this package supplies
// facilities to construct and manipulate protocol data.
package pixelpusher
