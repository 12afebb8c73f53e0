// Package marshal 实现 4.8 版本对象图二进制格式的编码与解码。
//
// 编码时按深度优先遍历值图，每个具有身份的值只输出一次，再次出现时写入回引用；
// 符号（Symbol）使用独立的去重表。解码时按相同的先序规则为每个单元分配索引，
// 使回引用和循环结构得以还原。
//
// 会话状态（引用表、深度预算、选项）在每次 Marshal/Unmarshal 调用中单独创建，
// 不同会话之间互不共享，可以并发执行；唯一可共享的是只读的 Registry。
package marshal
