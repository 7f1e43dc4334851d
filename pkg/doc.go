// Package pkg provides the core libraries for the cellmorph animation engine.
//
// # Overview
//
// Cellmorph turns one image into another: both are partitioned into a square
// grid of cells, a one-to-one pairing between source and target cells is
// computed under a color/position cost tradeoff, and every source cell is
// animated to its paired position. The pkg directory is organized into:
//
//  1. [grid], [assign], [anim] - Domain logic (partitioning, pairing, rendering)
//  2. [imageio], [encode] - Input decoding and output encoding
//  3. [cache], [preset], [errors], [observability] - Infrastructure
//  4. [pipeline] - Orchestration (load → assign → render)
//
// # Architecture
//
// The typical data flow through cellmorph:
//
//	Source/Target Images
//	         ↓
//	    [imageio] package (decode, crop, resize)
//	         ↓
//	    [grid] package (cells, centers, color features)
//	         ↓
//	    [assign] package (bijection under the cost model)
//	         ↓
//	    [anim] package (particles + ordered frame stream)
//	         ↓
//	    [encode] package (GIF or ffmpeg MP4)
//
// # Quick Start
//
// Run the whole pipeline through a runner:
//
//	import (
//	    "context"
//	    "github.com/cellmorph/cellmorph/pkg/encode"
//	    "github.com/cellmorph/cellmorph/pkg/pipeline"
//	)
//
//	func morph(ctx context.Context) error {
//	    opts := pipeline.DefaultOptions()
//	    opts.Source = "me.jpg"
//	    opts.Target = "sura.jpg"
//	    result, err := pipeline.NewRunner(nil, nil).Execute(ctx, opts)
//	    if err != nil {
//	        return err
//	    }
//	    return encode.Write(ctx, "out.gif", result.Renderer.Stream(ctx), opts.FPS)
//	}
package pkg
