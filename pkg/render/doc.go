// Package render turns topology systems into visual outputs.
//
// # Overview
//
// Rendering happens in two steps. [ToDOT] converts a system into Graphviz
// DOT text: clusters become subgraphs containing their channels, ECUs and
// frames become nodes, and triggerings become labeled edges onto the
// channel that carries them. [RenderSVG] and [RenderPNG] then lay the DOT
// graph out with Graphviz.
//
//	dot := render.ToDOT(sys, render.Options{})
//	svg, err := render.RenderSVG(ctx, dot)
//
// # Format Conversion
//
// [ToPDF] and [ToPNG] convert any SVG to other formats using the external
// rsvg-convert tool (from librsvg). [RenderPDF] wires them together for
// print exports.
package render
