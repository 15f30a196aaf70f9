package core

import (
	"github.com/go-gl/mathgl/mgl64"
)

// boxFaces lists the corners of each box face counter-clockwise as seen from
// outside. Corner i has x = bit 0, y = bit 1, z = bit 2.
var boxFaces = [6][4]int{
	{0, 4, 6, 2}, // -X
	{1, 3, 7, 5}, // +X
	{0, 1, 5, 4}, // -Y
	{2, 6, 7, 3}, // +Y
	{0, 2, 3, 1}, // -Z
	{4, 5, 7, 6}, // +Z
}

// BoxSoup returns the 36 vertices (12 outward-facing triangles) of an
// axis-aligned box as a triangle soup.
func BoxSoup(minB, maxB mgl64.Vec3) []mgl64.Vec3 {
	var corners [8]mgl64.Vec3
	for i := range corners {
		for axis := 0; axis < 3; axis++ {
			if i>>axis&1 == 1 {
				corners[i][axis] = maxB[axis]
			} else {
				corners[i][axis] = minB[axis]
			}
		}
	}

	out := make([]mgl64.Vec3, 0, 36)
	for _, f := range boxFaces {
		out = append(out, QuadSoup(corners[f[0]], corners[f[1]], corners[f[2]], corners[f[3]])...)
	}
	return out
}

// QuadSoup splits the quad a,b,c,d into the triangles (a,b,c) and (a,c,d).
func QuadSoup(a, b, c, d mgl64.Vec3) []mgl64.Vec3 {
	return []mgl64.Vec3{a, b, c, a, c, d}
}

// SoupTriangles converts a triangle soup into triangles tagged with mesh.
// Trailing vertices that do not form a whole triangle are ignored.
func SoupTriangles(soup []mgl64.Vec3, mesh int32) []Triangle {
	out := make([]Triangle, 0, len(soup)/3)
	for i := 0; i+2 < len(soup); i += 3 {
		out = append(out, NewTriangle(soup[i], soup[i+1], soup[i+2], mesh))
	}
	return out
}

func BoxTriangles(minB, maxB mgl64.Vec3, mesh int32) []Triangle {
	return SoupTriangles(BoxSoup(minB, maxB), mesh)
}

// Quad returns the two triangles of a quad given counter-clockwise.
func Quad(a, b, c, d mgl64.Vec3, mesh int32) []Triangle {
	return SoupTriangles(QuadSoup(a, b, c, d), mesh)
}
