// Package stats — счётчики и ограниченная история обработки задач.
package stats
