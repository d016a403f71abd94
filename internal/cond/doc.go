// Package cond implements condition trees: boolean expressions over
// time-windowed state checks.
//
// A leaf asks "did state S fire between MinSeconds and MaxSeconds ago?".
// Interior nodes combine two children with AND or OR. Trees are plain data;
// evaluation is a pure recursive function over a state Lookup.
//
// Trees are usually written in configuration as expressions:
//
//	["dodge-flash", 0, 1] and (["hp-low", 0, 5] or ["boss"])
//
// A bare ["name"] leaf means [0, 1].
package cond
