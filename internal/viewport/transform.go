package viewport

import (
	"fmt"
	"strconv"
)

// Transform returns the CSS transform for the image layer. It must be used
// together with LayerStyle so the origin convention holds.
func (e *Engine) Transform() string {
	return TransformOf(e.state)
}

// TransformOf formats a state as "translate(Xpx, Ypx) scale(S)".
func TransformOf(s State) string {
	return fmt.Sprintf("translate(%spx, %spx) scale(%s)",
		formatFloat(s.Pan[0], 2), formatFloat(s.Pan[1], 2), formatFloat(s.Scale, 4))
}

// LayerStyle positions an image layer of the natural size centered in its
// container with its transform-origin at the image center.
func LayerStyle(natural Size, s State) string {
	if !natural.Known() {
		return "display:none"
	}
	w, h := formatFloat(natural.W, 2), formatFloat(natural.H, 2)
	return fmt.Sprintf(
		"position:absolute;left:50%%;top:50%%;width:%spx;height:%spx;margin-left:-%spx;margin-top:-%spx;transform-origin:50%% 50%%;transform:%s",
		w, h, formatFloat(natural.W/2, 2), formatFloat(natural.H/2, 2), TransformOf(s))
}

func formatFloat(v float64, prec int) string {
	s := trimZeros(strconv.FormatFloat(v, 'f', prec, 64))
	if s == "-0" {
		return "0"
	}
	return s
}

func trimZeros(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] != '.' {
			continue
		}
		end := len(s)
		for end > i+1 && s[end-1] == '0' {
			end--
		}
		if end == i+1 {
			end = i
		}
		return s[:end]
	}
	return s
}
