// SPDX-License-Identifier: MIT
package transport

import (
	"bufio"
	"fmt"
	"html"
	"io"

	"freqmeter/internal/grid"
	"freqmeter/internal/svgpath"
)

// renderedChannels is the number of path elements a document always has.
const renderedChannels = 2

// Stroke colours of the channel paths, by index.
var channelStrokes = []string{"#1f77b4", "#d62728"}

// WriteSVG writes a standalone SVG document: the overlay's grid lines and
// labels followed by one path per channel (channel-0, channel-1). Channels
// missing from paths are written without path data.
func WriteSVG(w io.Writer, o grid.Overlay, paths svgpath.Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" class="frequency-meter" width="%d" height="%d">`+"\n",
		o.Width, o.Height)

	for _, l := range o.FrequencyGrid {
		fmt.Fprintf(bw, `<line stroke="#ccc" stroke-width="1" x1="%d" x2="%d" y1="%d" y2="%d"></line>`+"\n",
			l.X, l.X, l.Y0, l.Y1)
	}
	for _, labels := range [][]grid.Label{o.FrequencyLabels, o.DecibelLabels} {
		for _, t := range labels {
			fmt.Fprintf(bw, `<text font-size="%d" x="%d" y="%d">%s</text>`+"\n",
				grid.LegendFontSize, t.X, t.Y, html.EscapeString(t.Text))
		}
	}

	for i := range max(renderedChannels, len(paths)) {
		stroke := channelStrokes[i%len(channelStrokes)]
		if i < len(paths) {
			fmt.Fprintf(bw, `<path class="channel-%d" fill="transparent" stroke="%s" d="%s"></path>`+"\n",
				i, stroke, html.EscapeString(paths[i]))
		} else {
			fmt.Fprintf(bw, `<path class="channel-%d" fill="transparent" stroke="%s"></path>`+"\n", i, stroke)
		}
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}
