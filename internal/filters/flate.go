package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Params carries decode parameters from a stream dictionary, already
// converted to Go primitives. Relevant keys for Flate are Predictor,
// Columns, Colors, and BitsPerComponent.
type Params map[string]interface{}

// FlateDecode decompresses zlib/deflate data, the dominant PDF filter.
// When the parameters declare a predictor, the predictor transform is
// reversed after decompression.
func FlateDecode(data []byte, params Params) ([]byte, error) {
	decompressed, err := zlibDecompress(data)
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}

	predictor := intParam(params, "Predictor", 1)
	if predictor != 1 {
		decompressed, err = undoPredictor(decompressed, predictor, params)
		if err != nil {
			return nil, fmt.Errorf("predictor failed: %w", err)
		}
	}

	return decompressed, nil
}

func zlibDecompress(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// undoPredictor reverses the prediction transform applied before
// compression. Predictor 2 is TIFF horizontal differencing; 10-15 are
// the PNG row predictors.
func undoPredictor(data []byte, predictor int, params Params) ([]byte, error) {
	switch {
	case predictor == 2:
		return undoTIFFPredictor(data, params)
	case predictor >= 10 && predictor <= 15:
		return undoPNGPredictor(data, params)
	default:
		return nil, fmt.Errorf("unsupported predictor: %d", predictor)
	}
}

// undoTIFFPredictor reverses TIFF Predictor 2: each sample was stored
// as a difference from the sample to its left.
func undoTIFFPredictor(data []byte, params Params) ([]byte, error) {
	columns := intParam(params, "Columns", 1)
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)

	if bpc != 8 {
		return nil, fmt.Errorf("TIFF predictor supports only 8 bits per component, got %d", bpc)
	}

	rowSize := columns * colors
	if rowSize <= 0 || len(data)%rowSize != 0 {
		return nil, fmt.Errorf("data size %d is not a multiple of row size %d", len(data), rowSize)
	}

	result := make([]byte, len(data))
	for row := 0; row < len(data)/rowSize; row++ {
		start := row * rowSize
		for col := 0; col < rowSize; col++ {
			if col < colors {
				result[start+col] = data[start+col]
			} else {
				result[start+col] = data[start+col] + result[start+col-colors]
			}
		}
	}
	return result, nil
}

// undoPNGPredictor reverses the PNG row predictors. Each row carries a
// leading predictor byte selecting None, Sub, Up, Average, or Paeth for
// that row; the output omits these bytes.
func undoPNGPredictor(data []byte, params Params) ([]byte, error) {
	columns := intParam(params, "Columns", 1)
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)

	if bpc != 8 {
		return nil, fmt.Errorf("PNG predictor supports only 8 bits per component, got %d", bpc)
	}

	bytesPerPixel := colors
	rowLength := columns * colors
	rowSize := rowLength + 1 // leading predictor byte
	if rowLength <= 0 || len(data)%rowSize != 0 {
		return nil, fmt.Errorf("data size %d is not a multiple of row size %d", len(data), rowSize)
	}

	numRows := len(data) / rowSize
	result := make([]byte, numRows*rowLength)

	for row := 0; row < numRows; row++ {
		filterByte := data[row*rowSize]
		rowData := data[row*rowSize+1 : (row+1)*rowSize]
		out := result[row*rowLength : (row+1)*rowLength]

		var prev []byte
		if row > 0 {
			prev = result[(row-1)*rowLength : row*rowLength]
		}

		for i := 0; i < rowLength; i++ {
			var left, up, upLeft byte
			if i >= bytesPerPixel {
				left = out[i-bytesPerPixel]
			}
			if prev != nil {
				up = prev[i]
				if i >= bytesPerPixel {
					upLeft = prev[i-bytesPerPixel]
				}
			}

			var predicted byte
			switch filterByte {
			case 0: // None
			case 1: // Sub
				predicted = left
			case 2: // Up
				predicted = up
			case 3: // Average
				predicted = byte((int(left) + int(up)) / 2)
			case 4: // Paeth
				predicted = paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown PNG row filter %d in row %d", filterByte, row)
			}
			out[i] = rowData[i] + predicted
		}
	}

	return result, nil
}

// paeth selects the neighbor closest to the linear prediction, per the
// PNG specification.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

// intParam extracts an integer parameter, tolerating the numeric types
// produced by dictionary conversion.
func intParam(params Params, key string, defaultValue int) int {
	if params == nil {
		return defaultValue
	}
	switch v := params[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
